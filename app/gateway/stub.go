package gateway

import "context"

type StubService struct{}

func NewStubService() *StubService {
	return &StubService{}
}

func (s *StubService) CreateCheckout(_ context.Context, _ Checkout) Result {
	panic("gateway checkout is not available in this build")
}
