package github

// contentResponse is the contents-API representation of a file.
type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type writeResponse struct {
	Content *struct {
		SHA  string `json:"sha"`
		Path string `json:"path"`
	} `json:"content"`
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
}

type apiErrorResponse struct {
	Message string `json:"message"`
}
