package pagination

// Config holds page size normalization settings
type Config struct {
	DefaultPageSize int `env:"PAGE_SIZE_DEFAULT" envDefault:"5"`
	MaxPageSize     int `env:"PAGE_SIZE_MAX" envDefault:"50"`
}

// DefaultConfig matches values used by listings when nothing is configured
var DefaultConfig = Config{DefaultPageSize: 5, MaxPageSize: 50}

// Params is a validated pair of page number and page size
type Params struct {
	PageNumber int
	PageSize   int
}

// ClampParams applies defaults and limits so that both values are at least 1
func ClampParams(pageNumber, pageSize int, cfg Config) Params {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize <= 0 {
		pageSize = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && pageSize > cfg.MaxPageSize {
		pageSize = cfg.MaxPageSize
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return Params{PageNumber: pageNumber, PageSize: pageSize}
}
