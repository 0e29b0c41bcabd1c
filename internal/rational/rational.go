// Package rational implements the reduced rational rates used throughout
// MXL to express grain and sample rates (e.g. 60000/1001, 48000/1).
package rational

import "fmt"

// Rate is a reduced rational number num/den with num > 0 and den > 0.
type Rate struct {
	Num uint64
	Den uint64
}

// New returns a Rate reduced by the gcd of num and den.
//
// New(100000, 2000) == New(50, 1).
func New(num, den uint64) Rate {
	return Rate{Num: num, Den: den}.Reduce()
}

// Reduce returns r divided by gcd(r.Num, r.Den). A zero Num or Den is
// returned unchanged since it does not represent a valid rate.
func (r Rate) Reduce() Rate {
	if r.Num == 0 || r.Den == 0 {
		return r
	}
	g := gcd(r.Num, r.Den)
	return Rate{Num: r.Num / g, Den: r.Den / g}
}

// Valid reports whether the rate has a strictly positive numerator and
// denominator.
func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Equal reports whether r and other represent the same reduced rate.
func (r Rate) Equal(other Rate) bool {
	a, b := r.Reduce(), other.Reduce()
	return a.Num == b.Num && a.Den == b.Den
}

// Doubled returns the rate with its numerator doubled, used to convert a
// video frame rate into the effective field rate for interlaced content.
func (r Rate) Doubled() Rate {
	return Rate{Num: r.Num * 2, Den: r.Den}
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
