package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

var (
	ErrImportRequest = errors.New("error making history request")
	ErrImportStatus  = errors.New("error status from history endpoint")
)

// Importer copies item history from an external HTTP endpoint into a store.
// The endpoint answers GET <url>?item=&start=&end= with a models.APIResponse
// whose times are unix milliseconds.
type Importer struct {
	apiURL string
	store  database.Store
	client *http.Client
	logger *logrus.Entry
}

func NewImporter(apiURL string, store database.Store, logger *logrus.Logger) *Importer {
	return &Importer{
		apiURL: apiURL,
		store:  store,
		client: http.DefaultClient,
		logger: logger.WithField("component", "importer"),
	}
}

// FetchData imports the states of item between start and end and returns
// how many were stored.
func (f *Importer) FetchData(ctx context.Context, item string, start, end time.Time) (int, error) {
	q := url.Values{}
	q.Set("item", item)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImportRequest, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImportRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: got %d", ErrImportStatus, resp.StatusCode)
	}

	var apiResp models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Result) == 0 {
		return 0, nil
	}

	states := make([]models.HistoricState, 0, len(apiResp.Result))
	for _, data := range apiResp.Result {
		s, err := state.Parse(data.State)
		if err != nil {
			f.logger.WithFields(logrus.Fields{"item": item, "state": data.State}).Warn("skipping unparsable state")
			continue
		}
		states = append(states, models.HistoricState{Time: time.UnixMilli(data.Time).UTC(), State: s})
	}

	if len(states) == 0 {
		return 0, nil
	}
	if err := f.store.Persist(ctx, item, states...); err != nil {
		return 0, fmt.Errorf("failed to insert states: %w", err)
	}
	return len(states), nil
}

// BootstrapHistoricalData imports lookback worth of history for every item.
// Items failing to import are logged and do not stop the others.
func (f *Importer) BootstrapHistoricalData(ctx context.Context, items []string, lookback time.Duration) error {
	endTime := time.Now().UTC()
	startTime := endTime.Add(-lookback)

	var errs []error
	for _, name := range items {
		n, err := f.FetchData(ctx, name, startTime, endTime)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		f.logger.WithFields(logrus.Fields{"item": name, "states": n}).Info("imported history")
	}
	return errors.Join(errs...)
}
