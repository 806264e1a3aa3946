package publishing

import (
	"context"
	"fmt"
	"strings"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
)

const (
	CommandSchedule = "schedule"
	CommandPublish  = "publish"
	CommandCancel   = "cancel"
)

// Execute runs a command received from the commands topic.
func (uc *UseCase) Execute(ctx context.Context, cmd dto.ScheduleCommand) error {
	externalID := strings.TrimSpace(cmd.ExternalID)
	if externalID == "" {
		return fmt.Errorf("%w: external_id is required", errs.ErrValidation)
	}

	var err error
	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case CommandSchedule:
		_, err = uc.Schedule(ctx, externalID, dto.ScheduleRequest{
			ScheduledDate: cmd.ScheduledDate,
			ScheduledTime: cmd.ScheduledTime,
		})
	case CommandPublish:
		_, err = uc.Publish(ctx, externalID)
	case CommandCancel:
		_, err = uc.Cancel(ctx, externalID)
	default:
		return fmt.Errorf("%w: %q", errs.ErrUnknownCommand, cmd.Command)
	}
	if err != nil {
		return fmt.Errorf("PublishingUseCase - Execute - %s: %w", cmd.Command, err)
	}

	return nil
}
