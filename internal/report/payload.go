package report

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPayload builds the wire payload "<clientID>,<count>".
func FormatPayload(clientID string, count int) string {
	return clientID + "," + strconv.Itoa(count)
}

// ParsePayload splits a payload produced by FormatPayload.
func ParsePayload(payload string) (clientID string, count int, err error) {
	i := strings.LastIndexByte(payload, ',')
	if i <= 0 {
		return "", 0, fmt.Errorf("payload %q: expected \"<client_id>,<count>\"", payload)
	}

	count, err = strconv.Atoi(payload[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("payload %q: invalid count: %w", payload, err)
	}
	if count < 0 {
		return "", 0, fmt.Errorf("payload %q: negative count", payload)
	}

	return payload[:i], count, nil
}
