package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/melo-api/internal/model"
	"github.com/ekisa-team/melo-api/internal/service"
)

type (
	// SynthesizeRequestDTO is the request body for the Synthesize operation.
	SynthesizeRequestDTO struct {
		Speed    *float64 `json:"speed,omitempty" minimum:"0.5" maximum:"2.0" doc:"Speech rate multiplier"`
		Text     string   `json:"text" minLength:"1" maxLength:"2000" doc:"Text to synthesize"`
		Language *string  `json:"language,omitempty" doc:"Language code, defaults to the configured language"`
		Speaker  *string  `json:"speaker,omitempty" doc:"Speaker name, defaults to the configured speaker"`
	}
)

type (
	// SynthesizeInput is the huma input for the Synthesize operation.
	SynthesizeInput struct {
		Body SynthesizeRequestDTO
	}

	// SynthesizeOutput is the WAV response of the Synthesize operation.
	SynthesizeOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Language           string `header:"X-Effective-Language"`
		Speaker            string `header:"X-Effective-Speaker"`
		Fallback           string `header:"X-Speaker-Fallback"`
		Body               []byte
	}

	// VoicesOutput maps each loaded language to its sorted speaker names.
	VoicesOutput struct {
		Body map[string][]string
	}
)

// TTSHandler handles HTTP requests for TTS.
type TTSHandler struct {
	service *service.TTS
}

// NewTTSHandler creates a new TTSHandler instance and registers its operations.
func NewTTSHandler(api huma.API, service *service.TTS) *TTSHandler {
	h := &TTSHandler{service: service}

	huma.Register(api, huma.Operation{
		OperationID:   "list-voices",
		Method:        http.MethodGet,
		Path:          "/voices",
		Summary:       "List speakers of every loaded language",
		Description:   "Loads the default language first, which may download its model.",
		Tags:          []string{"tts"},
		DefaultStatus: http.StatusOK,
	}, h.handleVoices)

	huma.Register(api, huma.Operation{
		OperationID:   "synthesize",
		Method:        http.MethodPost,
		Path:          "/synthesize",
		Summary:       "Synthesize speech as WAV",
		Tags:          []string{"tts"},
		DefaultStatus: http.StatusOK,
	}, h.handleSynthesize)

	return h
}

// handleVoices handles the list-voices operation.
func (h *TTSHandler) handleVoices(ctx context.Context, _ *struct{}) (*VoicesOutput, error) {
	voices, err := h.service.Voices(ctx)
	if err != nil {
		return nil, toHTTPError(err)
	}

	return &VoicesOutput{Body: voices}, nil
}

// handleSynthesize handles the synthesize operation.
func (h *TTSHandler) handleSynthesize(ctx context.Context, input *SynthesizeInput) (*SynthesizeOutput, error) {
	req := service.SynthesisRequest{
		Text:     input.Body.Text,
		Language: input.Body.Language,
		Speaker:  input.Body.Speaker,
	}
	if input.Body.Speed != nil {
		req.Speed = *input.Body.Speed
	}

	res, err := h.service.Synthesize(ctx, req)
	if err != nil {
		return nil, toHTTPError(err)
	}

	return &SynthesizeOutput{
		ContentType:        "audio/wav",
		ContentDisposition: `inline; filename="speech.wav"`,
		Language:           res.Language,
		Speaker:            res.Speaker,
		Fallback:           strconv.FormatBool(res.Fallback),
		Body:               res.Audio,
	}, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidLanguage),
		errors.Is(err, service.ErrNoSpeakers):
		return huma.Error400BadRequest(detail(err))
	case errors.Is(err, service.ErrInvalidRequest):
		return huma.Error422UnprocessableEntity(detail(err))
	default:
		return huma.Error500InternalServerError(detail(err))
	}
}

// detail turns a Go error string into a sentence for the response body.
func detail(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}

	return string(unicode.ToUpper(r)) + msg[size:]
}
