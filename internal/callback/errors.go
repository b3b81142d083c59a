package callback

import "fmt"

// ResponseError is returned when the webhook answers with a non-2xx status.
type ResponseError struct {
	StatusCode int
	Status     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected response %s", e.Status)
}
