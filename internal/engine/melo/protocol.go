package melo

// handshake is the first line a worker prints once its model is loaded.
type handshake struct {
	Speakers map[string]int `json:"speakers"`
	Error    string         `json:"error,omitempty"`
	OK       bool           `json:"ok"`
}

// request is one synthesis call, written as a single JSON line.
type request struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	SpeakerID int     `json:"speaker_id"`
	Speed     float64 `json:"speed"`
}

// response answers exactly one request, matched by ID.
type response struct {
	ID          string `json:"id"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Error       string `json:"error,omitempty"`
	OK          bool   `json:"ok"`
}
