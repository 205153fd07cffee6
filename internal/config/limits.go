package config

// Limits bound the request rate against the backend. Local servers
// tolerate far more than hosted APIs, so these are configurable rather
// than hardcoded in the client.
type Limits struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=10000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=1000"`
}

func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: 30,
		BurstSize:         5,
	}
}
