package chrono

import "time"

// API is the clock every time-dependent component reads from.
//
// note: fault injection point
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl pins the clock to the portal's timezone, lesson dates are
// recorded in local time and semester boundaries depend on the month.
func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// FixedImpl always returns the same instant, it is used in tests.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At
}

func (f FixedImpl) Location() *time.Location {
	if f.At.Location() == nil {
		return time.UTC
	}
	return f.At.Location()
}
