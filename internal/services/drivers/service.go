package drivers

import (
	"context"
	"strings"

	"github.com/tonglam/vehicle-track-sub000/internal/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service is a read-only projection over the driver directory, used when an
// operator picks a signer.
type Service struct {
	dir ports.DriverDirectory
}

func New(dir ports.DriverDirectory) *Service { return &Service{dir: dir} }

func (s *Service) Search(ctx context.Context, query string, page, pageSize int) (ports.DriverPage, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	drivers, totalPages, err := s.dir.SearchDrivers(ctx, strings.TrimSpace(query), page, pageSize)
	if err != nil {
		return ports.DriverPage{}, err
	}
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}
	return ports.DriverPage{Drivers: drivers, Page: page, TotalPages: totalPages}, nil
}
