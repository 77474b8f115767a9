// internal/service/distribution/infrastructure/exception_http_reporter.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tripnexus/internal/pkg/httpclient"
	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"

	"github.com/pkg/errors"
)

// HTTPExceptionReporter 通过预订服务的异常单接口上报推送失败，实现 port.ExceptionReporter。
type HTTPExceptionReporter struct {
	client          *httpclient.Client
	bookingEndpoint string
}

func NewHTTPExceptionReporter(client *httpclient.Client, bookingEndpoint string) *HTTPExceptionReporter {
	return &HTTPExceptionReporter{client: client, bookingEndpoint: bookingEndpoint}
}

var _ port.ExceptionReporter = (*HTTPExceptionReporter)(nil)

type raiseExceptionPayload struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Context map[string]string `json:"context"`
}

func (r *HTTPExceptionReporter) ReportPushFailure(ctx context.Context, channel domain.Channel, snapshots []domain.InventorySnapshot, cause error) error {
	payload := raiseExceptionPayload{
		Kind:    "UPSTREAM_ERROR",
		Message: fmt.Sprintf("push to channel %s failed: %v", channel.Name, cause),
		Context: map[string]string{
			"channel":   channel.Name,
			"endpoint":  channel.Endpoint,
			"snapshots": strconv.Itoa(len(snapshots)),
			"resources": resourceDigest(snapshots),
		},
	}
	if err := r.client.PostJSON(ctx, r.bookingEndpoint+"/exceptions/raise", payload, nil); err != nil {
		return errors.Wrapf(err, "report push failure for channel %s", channel.Name)
	}
	return nil
}

// resourceDigest 列出受影响的资源，超过10条截断，异常单上下文保持可读。
func resourceDigest(snapshots []domain.InventorySnapshot) string {
	const limit = 10
	ids := make([]string, 0, limit)
	for i, snap := range snapshots {
		if i == limit {
			ids = append(ids, fmt.Sprintf("...(+%d)", len(snapshots)-limit))
			break
		}
		ids = append(ids, snap.ResourceID+"@"+snap.Date)
	}
	return strings.Join(ids, ",")
}
