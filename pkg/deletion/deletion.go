// Package deletion removes events from an AMS instance. Deletes are
// permanent, so both operations accept a confirmation hook that is asked
// before anything is sent.
package deletion

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// Options adjusts delete operations.
type Options struct {
	// Confirm, when set, is asked with the number of events about to be
	// deleted. Returning false cancels the operation.
	Confirm func(count int) bool
	Logger  hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// DeleteEvent removes a single event and returns the server's
// acknowledgement message.
func DeleteEvent(ctx context.Context, c *client.Client, eventID int64, opts Options) (string, error) {
	if eventID <= 0 {
		return "", fmt.Errorf("event id must be a positive integer")
	}
	if opts.Confirm != nil && !opts.Confirm(1) {
		return "", client.NewError("delete operation cancelled")
	}
	log := opts.logger()
	log.Info("deleting event", "event_id", eventID)

	body, err := c.Fetch(ctx, http.MethodPost, "deleteevent",
		map[string]any{"eventId": eventID},
		client.WithVersion("v1"), client.WithoutCache())
	if err != nil {
		return "", err
	}

	var resp struct {
		State   string `mapstructure:"state"`
		Message string `mapstructure:"message"`
	}
	if err := mapstructure.WeakDecode(body, &resp); err != nil || resp.State == "" {
		return "", client.NewError(
			fmt.Sprintf("failed to delete event %d: unexpected response", eventID))
	}
	if resp.State != "SUCCESS" {
		return "", client.NewError(
			fmt.Sprintf("failed to delete event %d: %s", eventID, resp.Message))
	}
	log.Info("deleted event", "event_id", eventID, "message", resp.Message)
	return resp.Message, nil
}

// DeleteMultipleEvents removes a batch of events in one request. The server
// acknowledges success with an empty body; the batch either fully succeeds
// or fully fails.
func DeleteMultipleEvents(ctx context.Context, c *client.Client, eventIDs []int64, opts Options) error {
	if len(eventIDs) == 0 {
		return fmt.Errorf("no event ids provided")
	}
	for _, id := range eventIDs {
		if id <= 0 {
			return fmt.Errorf("event id must be a positive integer, got %d", id)
		}
	}
	if opts.Confirm != nil && !opts.Confirm(len(eventIDs)) {
		return client.NewError("delete operation cancelled")
	}
	log := opts.logger()
	log.Info("deleting events", "count", len(eventIDs))

	ids := make([]string, len(eventIDs))
	for i, id := range eventIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	body, err := c.Fetch(ctx, http.MethodPost, "event/deleteAll",
		map[string]any{"eventIds": ids}, client.WithoutCache())
	if err != nil {
		return err
	}
	if body != nil {
		return client.NewError(
			fmt.Sprintf("failed to delete %d events: %v", len(eventIDs), body))
	}
	log.Info("deleted events", "count", len(eventIDs))
	return nil
}
