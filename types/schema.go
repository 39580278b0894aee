package types

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
)

// ReservationSchema returns the JSON schema of Reservation.
func ReservationSchema() (string, error) {
	schema := jsonschema.Reflect(&Reservation{})
	schema.Title = "Reservation"
	schema.Description = "Lunch reservation collected one field at a time before it is sent to the booking service."
	data, err := sonic.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return string(data), nil
}
