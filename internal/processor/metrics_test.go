package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/metrics"
	"github.com/JakeFAU/people-email-enricher/internal/peoplesearch"
	"github.com/JakeFAU/people-email-enricher/internal/retry"
)

const annListing = `<html><body>
<div class="card-block">
  <div style="line-height:20px;margin-bottom:15px">1 Main St<br>Springfield, IL 62701</div>
  <a class="btn" href="/ann-lee_id_A1">View Free Details</a>
</div>
</body></html>`

const annDetail = `<html><body>
<div id="email_section"><h3>ann@gmail.com</h3><h3>ann@company.com</h3></div>
</body></html>`

type pageFetcher struct{}

func (pageFetcher) Fetch(_ context.Context, target string, renderJS bool) (string, error) {
	if renderJS && strings.HasSuffix(target, "/ann-lee_id_A1") {
		return annDetail, nil
	}
	return annListing, nil
}

// Not parallel: asserts a delta on a process-wide counter.
func TestProcessCountsEachEmailOnce(t *testing.T) {
	searcher, err := peoplesearch.New(peoplesearch.Config{BaseURL: "https://people.example"},
		pageFetcher{}, retry.Policy{MaxAttempts: 1}, zap.NewNop())
	require.NoError(t, err)
	p := newProcessor(t, &fakeCities{cities: []string{"Springfield IL"}}, searcher, &fakeStore{}, nil)

	before := testutil.ToFloat64(metrics.EmailsFound())
	rows, err := p.Process(context.Background(), ann)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ann@gmail.com", rows[0].Email)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.EmailsFound())-before, 0.0001)
}
