package crashtracker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type dryRunClient struct{}

func (c *dryRunClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	if msg != "" {
		err = fmt.Errorf("%s: %w", msg, err)
	}
	log.WithContext(ctx).Errorf("[DRY_RUN Crash Reporter] %v", err)
}

func (c *dryRunClient) LogAndReportMessages(ctx context.Context, msg string) {
	log.WithContext(ctx).Infof("[DRY_RUN Crash Reporter] %s", msg)
}

func (c *dryRunClient) FlushEvents(waitTime time.Duration) bool {
	return false
}

func (c *dryRunClient) Recover() {}

func (c *dryRunClient) Clone() CrashTrackerClient {
	return &dryRunClient{}
}

func NewDryRunClient() (*dryRunClient, error) {
	return &dryRunClient{}, nil
}

var _ CrashTrackerClient = (*dryRunClient)(nil)
