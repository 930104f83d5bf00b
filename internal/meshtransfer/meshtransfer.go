// Package meshtransfer maps solutions between two uniform 1D meshes.
//
// Nodes of an n-point mesh sit at x_i = i/(n-1) on [0, 1] (a single node at
// 0 when n == 1). Interpolation evaluates the piecewise-linear coarse
// function at fine nodes; restriction evaluates the piecewise-linear fine
// function at coarse nodes. Node positions are located with integer
// arithmetic, so meshes of equal size map onto each other exactly and both
// operators reduce to the identity.
package meshtransfer

import (
	"fmt"

	"github.com/san-kum/parareal/internal/pint"
	"gonum.org/v1/gonum/mat"
)

var _ pint.MeshTransferer = (*MeshTransfer)(nil)

type MeshTransfer struct {
	ndofFine   int
	ndofCoarse int
	imat       *mat.Dense // ndofFine x ndofCoarse
	rmat       *mat.Dense // ndofCoarse x ndofFine
}

func New(ndofFine, ndofCoarse int) (*MeshTransfer, error) {
	if ndofFine <= 0 {
		return nil, pint.NewConfigurationError("ndof_fine", "must be positive, got %d", ndofFine)
	}
	if ndofCoarse <= 0 {
		return nil, pint.NewConfigurationError("ndof_coarse", "must be positive, got %d", ndofCoarse)
	}
	return &MeshTransfer{
		ndofFine:   ndofFine,
		ndofCoarse: ndofCoarse,
		imat:       linearMap(ndofFine, ndofCoarse),
		rmat:       linearMap(ndofCoarse, ndofFine),
	}, nil
}

func (m *MeshTransfer) NDOFFine() int   { return m.ndofFine }
func (m *MeshTransfer) NDOFCoarse() int { return m.ndofCoarse }

// IsIdentity reports whether both meshes coincide.
func (m *MeshTransfer) IsIdentity() bool { return m.ndofFine == m.ndofCoarse }

// Interpolation returns the ndofFine x ndofCoarse interpolation matrix.
func (m *MeshTransfer) Interpolation() *mat.Dense { return m.imat }

// Restriction returns the ndofCoarse x ndofFine restriction matrix.
func (m *MeshTransfer) Restriction() *mat.Dense { return m.rmat }

func (m *MeshTransfer) Restrict(src, dst pint.Solution) error {
	return apply("Restrict", m.rmat, src, dst)
}

func (m *MeshTransfer) Interpolate(dst, src pint.Solution) error {
	return apply("Interpolate", m.imat, src, dst)
}

func apply(op string, t *mat.Dense, src, dst pint.Solution) error {
	rows, cols := t.Dims()
	if err := pint.CheckDim(op+" source", cols, src.NDOF()); err != nil {
		return err
	}
	if err := pint.CheckDim(op+" destination", rows, dst.NDOF()); err != nil {
		return err
	}
	s, sok := src.(pint.Vectorer)
	d, dok := dst.(pint.Vectorer)
	if sok && dok {
		var out mat.VecDense
		out.MulVec(t, s.Vec())
		return d.SetVec(&out)
	}
	if rows == cols {
		return copyInto(dst, src)
	}
	if !sok {
		return fmt.Errorf("meshtransfer: %s source %T: %w", op, src, pint.ErrNoVector)
	}
	return fmt.Errorf("meshtransfer: %s destination %T: %w", op, dst, pint.ErrNoVector)
}

// copyInto sets dst to src using only Axpy, for states without a vector view.
func copyInto(dst, src pint.Solution) error {
	diff := src.Clone()
	if err := diff.Axpy(-1, dst); err != nil {
		return err
	}
	return dst.Axpy(1, diff)
}

// linearMap builds the to x from matrix that evaluates the piecewise-linear
// function on the from-mesh at the nodes of the to-mesh.
func linearMap(to, from int) *mat.Dense {
	m := mat.NewDense(to, from, nil)
	if to == from {
		for i := 0; i < to; i++ {
			m.Set(i, i, 1)
		}
		return m
	}
	if from == 1 {
		for i := 0; i < to; i++ {
			m.Set(i, 0, 1)
		}
		return m
	}
	if to == 1 {
		m.Set(0, 0, 1)
		return m
	}
	// node i of the to-mesh lies at (i*(from-1))/(to-1) in from-mesh index units
	den := to - 1
	for i := 0; i < to; i++ {
		num := i * (from - 1)
		j := num / den
		rem := num % den
		if rem == 0 {
			m.Set(i, j, 1)
			continue
		}
		w := float64(rem) / float64(den)
		m.Set(i, j, 1-w)
		m.Set(i, j+1, w)
	}
	return m
}
