// FILE: crashwatch/src/internal/device/payload.go
package device

import (
	"encoding/json"
	"strings"
)

type payloadDoc struct {
	TestData string `json:"test_data"`
	Size     int    `json:"size"`
}

// PayloadBody builds the JSON document used by payload sweeps:
// {"test_data": "xxx...", "size": n} with n filler bytes
func PayloadBody(size int) []byte {
	if size < 0 {
		size = 0
	}
	body, _ := json.Marshal(payloadDoc{TestData: strings.Repeat("x", size), Size: size})
	return body
}
