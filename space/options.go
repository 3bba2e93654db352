package space

import (
	"github.com/sirupsen/logrus"

	"github.com/MailG/innodb-ruby/internal/page"
)

// Options configures how a Space is opened. There is no external
// config-file format for this library (spec.md has no persisted
// settings beyond the tablespace itself); Options is populated
// programmatically via the Option functions below.
type Options struct {
	PageSize     int // 0 => autodetect (spec.md §4.J)
	ChecksumAlgo page.ChecksumAlgo
	Logger       *logrus.Logger
	CacheSize    int
}

func defaultOptions() Options {
	return Options{
		ChecksumAlgo: page.ChecksumInnoDB,
		Logger:       logrus.StandardLogger(),
		CacheSize:    256,
	}
}

// Option mutates Options when passed to Open.
type Option func(*Options)

// WithPageSize disables autodetection and fixes the page size.
func WithPageSize(n int) Option { return func(o *Options) { o.PageSize = n } }

// WithChecksumAlgo selects the checksum algorithm used by
// page.Framed.ChecksumOK. Never affects whether a page parses.
func WithChecksumAlgo(a page.ChecksumAlgo) Option {
	return func(o *Options) { o.ChecksumAlgo = a }
}

// WithLogger installs a logger for diagnostics: skipped unreadable
// pages and extent descriptor pages, and skipped malformed SYS_INDEXES
// rows. Checksum mismatches and page-size autodetection attempts are
// not logged.
func WithLogger(l *logrus.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithCacheSize bounds the in-memory decoded-page cache.
func WithCacheSize(n int) Option { return func(o *Options) { o.CacheSize = n } }
