package sda

import (
	"fmt"
	"io"
)

// Polynomial represents a polynomial over a ring
type Polynomial struct {
	ring         Ring
	coefficients []int64
}

// NewRandomPolynomial creates a new random polynomial with given degree and constant term
func NewRandomPolynomial(ring Ring, degree int, constantTerm int64, rand io.Reader) (*Polynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("degree must be non-negative")
	}

	coefficients := make([]int64, degree+1)
	coefficients[0] = ring.Reduce(constantTerm)

	for i := 1; i <= degree; i++ {
		coeff, err := ring.Random(rand)
		if err != nil {
			clear(coefficients)
			return nil, err
		}
		coefficients[i] = coeff
	}

	return &Polynomial{
		ring:         ring,
		coefficients: coefficients,
	}, nil
}

// Evaluate evaluates the polynomial at a given point
func (p *Polynomial) Evaluate(x int64) int64 {
	if len(p.coefficients) == 0 {
		return 0
	}

	// Horner: f(x) = a0 + x(a1 + x(a2 + ...))
	result := p.coefficients[len(p.coefficients)-1]
	for i := len(p.coefficients) - 2; i >= 0; i-- {
		result = p.ring.Add(p.ring.Mul(result, x), p.coefficients[i])
	}
	return result
}

// Degree returns the degree of the polynomial
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Zeroize clears the coefficients, including the shared value
func (p *Polynomial) Zeroize() {
	clear(p.coefficients)
	p.coefficients = nil
}
