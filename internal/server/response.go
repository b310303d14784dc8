package server

import (
	"context"

	"github.com/liveshop/liveshop/internal/domain"
)

// Response envelopes. Every success response carries success=true; errors
// are rendered by the errors middleware with success=false.

type listResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

type dataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// sessionView is a session with its product references resolved to full
// product records for API responses.
type sessionView struct {
	domain.Session
	Products []domain.Product `json:"products"`
}

func (s *Server) populateSession(ctx context.Context, sess domain.Session) (sessionView, error) {
	products, err := s.products.ListByIDs(ctx, sess.ProductIDs)
	if err != nil {
		return sessionView{}, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return sessionView{Session: sess, Products: products}, nil
}
