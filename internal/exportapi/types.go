package exportapi

// Request is the body sent to POST /export_session.
type Request struct {
	SessionID     string `json:"session_id"`
	ExtractFrames bool   `json:"extract_frames"`
}

// Archive is a successful export: the response body, verbatim.
type Archive struct {
	SessionID   string
	ContentType string
	Data        []byte
}

// Size returns the archive length in bytes.
func (a *Archive) Size() int64 {
	return int64(len(a.Data))
}

// failureBody is the optional JSON shape of a non-2xx response.
type failureBody struct {
	Error *string `json:"error"`
}
