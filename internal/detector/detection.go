package detector

import "github.com/feral-file/ff-nft-transfer/internal/domain"

// Detection is a handle on a detection running in the background
type Detection struct {
	result Result
	done   chan struct{}
}

// Result returns the detection result, or loading while the queries are in flight
func (d *Detection) Result() Result {
	select {
	case <-d.done:
		return d.result
	default:
		return Result{Type: domain.ContractTypeLoading}
	}
}

// Done is closed once the result is available
func (d *Detection) Done() <-chan struct{} {
	return d.done
}
