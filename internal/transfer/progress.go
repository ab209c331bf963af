package transfer

import "io"

// progressReader counts bytes coming off the media file and converts them to
// percentages. It caps at 99 so only a confirmed server response reports 100.
type progressReader struct {
	inner    io.Reader
	total    int64
	read     int64
	lastPct  int
	callback ProgressFunc
}

func newProgressReader(inner io.Reader, total int64, callback ProgressFunc) *progressReader {
	return &progressReader{inner: inner, total: total, callback: callback}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.read += int64(n)
		r.report()
	}
	return n, err
}

func (r *progressReader) report() {
	if r.total <= 0 {
		return
	}
	pct := int(r.read * 100 / r.total)
	if pct > 99 {
		pct = 99
	}
	if pct <= r.lastPct {
		return
	}
	r.lastPct = pct
	r.callback(pct)
}
