package syncer

import "time"

// nowFunc is the Job's time source, overridable in tests so startTime and
// doneTime can be asserted deterministically.
var nowFunc = time.Now
