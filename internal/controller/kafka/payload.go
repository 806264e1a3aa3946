package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
)

// decodeCommand parses a schedule command. Malformed payloads are
// validation errors: they will never decode on redelivery either.
func decodeCommand(value []byte) (dto.ScheduleCommand, error) {
	var cmd dto.ScheduleCommand

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()

	err := dec.Decode(&cmd)
	if err != nil {
		return dto.ScheduleCommand{}, fmt.Errorf("%w: command payload: %v", errs.ErrValidation, err)
	}

	return cmd, nil
}
