// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for outbound game and calendar calls.
// The oracle keeps its own client with a longer deadline.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
