package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// HealthOutput is the plain-text liveness response.
type HealthOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterHealth registers the liveness probe. It never touches the model cache.
func RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "healthz",
		Method:        http.MethodGet,
		Path:          "/healthz",
		Summary:       "Liveness probe",
		Tags:          []string{"health"},
		DefaultStatus: http.StatusOK,
	}, func(context.Context, *struct{}) (*HealthOutput, error) {
		return &HealthOutput{
			ContentType: "text/plain",
			Body:        []byte("ok"),
		}, nil
	})
}
