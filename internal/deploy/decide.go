package deploy

import "fmt"

// Decide picks the action for t. It depends on nothing but t: a missing
// target is created, an identical image is skipped and anything else is
// updated. Images are compared as rendered strings, so two tags of the
// same content still count as different.
func Decide(t Target) Decision {
	desired := t.Desired.String()
	d := Decision{Target: t.ID, Desired: desired}

	if !t.Observed.Exists {
		d.Action = Create
		d.Explanation = fmt.Sprintf("%s does not exist yet; deploying %s", t.ID, desired)
		return d
	}

	previous := t.Observed.Image
	d.Previous = &previous
	if previous == desired {
		d.Action = Skip
		d.Explanation = fmt.Sprintf("%s already runs %s", t.ID, desired)
		return d
	}

	d.Action = Update
	d.Explanation = fmt.Sprintf("%s runs %s; updating to %s", t.ID, previous, desired)
	return d
}
