package writer

// ProgressFn receives a completion percentage in [0, 100]. It is invoked
// synchronously, zero or more times, and always ends at 100.
type ProgressFn func(percent int)

// progressUpdater maps a processed-record counter onto a percentage range.
// Callbacks are monotonically non-decreasing and deduplicated, so a caller
// driving a progress bar sees each step at most once.
type progressUpdater struct {
	fn    ProgressFn
	from  int
	to    int
	total uint64
	last  int
}

func newProgressUpdater(fn ProgressFn, from, to int, total uint64) *progressUpdater {
	return &progressUpdater{
		fn:    fn,
		from:  from,
		to:    to,
		total: total,
		last:  from,
	}
}

// update reports that processed records out of total are done.
func (u *progressUpdater) update(processed uint64) {
	if u.total == 0 {
		return
	}
	if processed > u.total {
		processed = u.total
	}
	percent := u.from + int(uint64(u.to-u.from)*processed/u.total)
	if percent > u.last {
		u.last = percent
		u.fn(percent)
	}
}
