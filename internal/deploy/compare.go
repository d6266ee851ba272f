package deploy

import (
	"context"
	"errors"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/image"
)

// Comparator reads the observed side of a Target. Every call goes to the
// runtime; nothing is cached.
type Comparator struct {
	reader StateReader
}

func NewComparator(reader StateReader) *Comparator {
	return &Comparator{reader: reader}
}

// Compare populates a Target for id with its current state.
func (c *Comparator) Compare(ctx context.Context, id TargetID, desired image.Reference) (Target, error) {
	obs, err := c.reader.ReadState(ctx, id)
	if err != nil {
		var fe *failure.Error
		if !errors.As(err, &fe) {
			err = failure.Network("deploy.read_state", err)
		}
		return Target{}, err
	}
	return Target{ID: id, Observed: obs, Desired: desired}, nil
}
