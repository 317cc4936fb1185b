package ports

import (
	"context"

	"goinsight/domain/core"
	"goinsight/domain/dataset"
)

// DatasetRepository is the external dataset store: the registry of uploaded
// file versions and the read-through cache of their profiles
type DatasetRepository interface {
	// Version registry
	Create(ctx context.Context, v *dataset.Version) error
	GetByID(ctx context.Context, id core.DatasetVersionID) (*dataset.Version, error)
	List(ctx context.Context, limit, offset int) ([]*dataset.Version, error)
	UpdateStatus(ctx context.Context, id core.DatasetVersionID, status dataset.VersionStatus, errorMsg string) error
	Delete(ctx context.Context, id core.DatasetVersionID) error

	// Profile cache, keyed by version
	SaveProfile(ctx context.Context, profile *dataset.DatasetProfile) error
	GetProfile(ctx context.Context, id core.DatasetVersionID) (*dataset.DatasetProfile, error)
}
