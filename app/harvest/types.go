package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/BRA7534/CARFAST/app/database"
	"github.com/BRA7534/CARFAST/app/fetcher"
)

var (
	ErrInvalidArgument      = database.ErrInvalidArgument
	ErrReferentialIntegrity = database.ErrReferentialIntegrity
	ErrUnauthorized         = errors.New("unauthorized")
)

const DefaultSourcePacing = 2 * time.Second

type Request struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	// ModelID skips the catalog lookup by brand and model when set.
	ModelID int64 `json:"model_id,omitempty"`
}

// SourceOutcome summarizes what one source contributed to a harvest.
type SourceOutcome struct {
	Source   string `json:"source"`
	Links    int    `json:"links"`
	Pages    int    `json:"pages"`
	Reviews  int    `json:"reviews"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

type Result struct {
	ModelID   int64             `json:"model_id"`
	Reviews   []database.Review `json:"reviews"`
	Sources   []SourceOutcome   `json:"sources"`
	Cancelled bool              `json:"cancelled"`
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) fetcher.Result
}
