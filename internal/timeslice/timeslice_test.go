package timeslice_test

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/parareal/internal/integrators"
	"github.com/san-kum/parareal/internal/meshtransfer"
	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/solution"
	"github.com/san-kum/parareal/internal/timeslice"
	"gonum.org/v1/gonum/mat"
)

var _ = Describe("TimeSlice", func() {
	var (
		rng        *rand.Rand
		tstart     float64
		tend       float64
		intFine    *integrators.ImplicitEuler
		intCoarse  *integrators.ImplicitEuler
		ndofFine   int
		ndofCoarse int
		u0fine     *solution.Linear
		u0coarse   *solution.Linear
	)

	BeforeEach(func() {
		rng = rand.New(rand.NewSource(GinkgoRandomSeed()))
		tstart = 0.1 + 0.4*rng.Float64()
		tend = tstart + 0.1 + 0.3*rng.Float64()

		var err error
		intFine, err = integrators.NewImplicitEuler(tstart, tend, 1+rng.Intn(50))
		Expect(err).NotTo(HaveOccurred())
		intCoarse, err = integrators.NewImplicitEuler(tstart, tend, 1+rng.Intn(10))
		Expect(err).NotTo(HaveOccurred())

		ndofCoarse = 2 + rng.Intn(8)
		ndofFine = ndofCoarse + 1 + rng.Intn(15)
		u0fine = randomState(rng, ndofFine)
		u0coarse = randomState(rng, ndofCoarse)
	})

	Describe("construction", func() {
		It("accepts valid parameters with and without a coarse state", func() {
			_, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())

			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.HasCoarsening()).To(BeTrue())
		})

		It("accepts zero tolerance and zero iter_max", func() {
			_, err := timeslice.New(intFine, intCoarse, 0, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("rejects invalid parameters",
			func(tolerance float64, iterMax int, param string) {
				_, err := timeslice.New(intFine, intCoarse, tolerance, iterMax)
				Expect(err).To(MatchError(pint.ErrConfiguration))
				var ce *pint.ConfigurationError
				Expect(errors.As(err, &ce)).To(BeTrue())
				Expect(ce.Param).To(Equal(param))
			},
			Entry("negative tolerance", -1e-5, 5, "tolerance"),
			Entry("NaN tolerance", math.NaN(), 5, "tolerance"),
			Entry("negative iter_max", 1e-10, -5, "iter_max"),
		)

		It("rejects a coarse propagator with a different tstart", func() {
			intC, err := integrators.NewImplicitEuler(1e-10+intCoarse.TStart(), intCoarse.TEnd(), intCoarse.NSteps())
			Expect(err).NotTo(HaveOccurred())
			_, err = timeslice.New(intFine, intC, 1e-10, 5)
			Expect(err).To(MatchError(pint.ErrConfiguration))
		})

		It("rejects a coarse propagator with a different tend", func() {
			intC, err := integrators.NewImplicitEuler(intCoarse.TStart(), 1e-10+intCoarse.TEnd(), intCoarse.NSteps())
			Expect(err).NotTo(HaveOccurred())
			_, err = timeslice.New(intFine, intC, 1e-10, 5)
			Expect(err).To(MatchError(pint.ErrConfiguration))
		})

		It("tolerates interval differences below the matching tolerance", func() {
			intC, err := integrators.NewImplicitEuler(intCoarse.TStart(), intCoarse.TEnd()*(1+1e-12), intCoarse.NSteps())
			Expect(err).NotTo(HaveOccurred())
			_, err = timeslice.New(intFine, intC, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
		})

		It("deep-copies the coarse state", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())
			first, _ := ts.GetSolCoarse()
			before := copyVec(first)

			// scribbling over the caller's state must not change the slice
			Expect(u0coarse.SetVec(mat.NewVecDense(ndofCoarse, randomValues(rng, ndofCoarse)))).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())
			second, _ := ts.GetSolCoarse()
			Expect(mat.Equal(before, vec(second))).To(BeTrue())
		})
	})

	Describe("accessors", func() {
		var ts *timeslice.TimeSlice

		BeforeEach(func() {
			var err error
			ts, err = timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the fine propagator interval bit for bit", func() {
			Expect(ts.TStart()).To(Equal(intFine.TStart()))
			Expect(ts.TEnd()).To(Equal(intFine.TEnd()))
		})

		It("fails fast before the producing calls", func() {
			_, err := ts.GetSolFine()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.GetSolCoarse()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.GetSolEnd()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.GetSolStart()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.GetResidual()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.Residual()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			_, err = ts.IsConverged()
			Expect(err).To(MatchError(pint.ErrPrecondition))
			Expect(ts.UpdateFine()).To(MatchError(pint.ErrPrecondition))
			Expect(ts.UpdateCoarse()).To(MatchError(pint.ErrPrecondition))
		})

		It("needs sol_end for the residual even after a fine update", func() {
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			_, err := ts.GetResidual()
			var pe *pint.PreconditionError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Missing).To(Equal("SetSolEnd"))
		})

		It("rejects nil states", func() {
			Expect(ts.SetSolStart(nil)).To(MatchError(pint.ErrConfiguration))
			Expect(ts.SetSolEnd(nil)).To(MatchError(pint.ErrConfiguration))
		})

		It("counts iterations", func() {
			Expect(ts.Iteration()).To(Equal(0))
			ts.IncreaseIter()
			ts.IncreaseIter()
			Expect(ts.Iteration()).To(Equal(2))
		})
	})

	Describe("mesh transfer", func() {
		It("is sized from the start state and the coarse state", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.MeshTransfer()).To(BeNil())

			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			mt := ts.MeshTransfer()
			Expect(mt.NDOFFine()).To(Equal(ndofFine))
			Expect(mt.NDOFCoarse()).To(Equal(ndofCoarse))

			Expect(ts.SetSolStart(u0fine.Clone())).To(Succeed())
			Expect(ts.MeshTransfer()).To(BeIdenticalTo(mt))
		})

		It("is the identity without a coarse state", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.MeshTransfer().NDOFFine()).To(Equal(ndofFine))
			Expect(ts.MeshTransfer().NDOFCoarse()).To(Equal(ndofFine))
		})

		It("rejects a start state of a different size once built", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.SetSolStart(randomState(rng, ndofFine+1))).To(MatchError(pint.ErrDimensionMismatch))
		})

		It("is built exactly once through the factory", func() {
			calls := 0
			factory := func(f, c int) (pint.MeshTransferer, error) {
				calls++
				return meshtransfer.New(f, c)
			}
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5,
				timeslice.WithCoarseState(u0coarse), timeslice.WithMeshTransfer(factory))
			Expect(err).NotTo(HaveOccurred())

			_, err = ts.CoarseUpdateMatrix(u0fine)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(calls).To(Equal(1))
		})
	})

	Describe("fine update", func() {
		It("matches the fine update matrix", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())

			sol := randomState(rng, ndofFine)
			Expect(ts.SetSolStart(sol)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())

			solTS, err := ts.GetSolFine()
			Expect(err).NotTo(HaveOccurred())
			Expect(solTS).To(BeAssignableToTypeOf(&solution.Linear{}))

			fmat, err := ts.FineUpdateMatrix(sol)
			Expect(err).NotTo(HaveOccurred())
			Expect(distance(fmat, vec(sol), solTS)).To(BeNumerically("<", 1e-12))
		})

		It("leaves sol_start untouched", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			before := copyVec(u0fine)
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			Expect(mat.Equal(before, u0fine.Vec())).To(BeTrue())
		})
	})

	Describe("coarse update", func() {
		It("matches the coarse update matrix without coarsening", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())

			solTS, err := ts.GetSolCoarse()
			Expect(err).NotTo(HaveOccurred())
			Expect(solTS).To(BeAssignableToTypeOf(&solution.Linear{}))

			cmat, err := ts.CoarseUpdateMatrix(u0fine)
			Expect(err).NotTo(HaveOccurred())
			Expect(distance(cmat, u0fine.Vec(), solTS)).To(BeNumerically("<", 1e-12))
		})

		It("matches I * G * R with coarsening", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 3, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())
			solTS, err := ts.GetSolCoarse()
			Expect(err).NotTo(HaveOccurred())

			cmat, err := ts.CoarseUpdateMatrix(u0fine)
			Expect(err).NotTo(HaveOccurred())
			Expect(distance(cmat, u0fine.Vec(), solTS)).To(BeNumerically("<", 1e-12))

			mt, err := meshtransfer.New(ndofFine, ndofCoarse)
			Expect(err).NotTo(HaveOccurred())
			g, err := intCoarse.UpdateMatrix(u0coarse)
			Expect(err).NotTo(HaveOccurred())
			var gr, igr mat.Dense
			gr.Mul(g, mt.Restriction())
			igr.Mul(mt.Interpolation(), &gr)
			Expect(mat.EqualApprox(&igr, cmat, 1e-14)).To(BeTrue())
		})

		It("builds the mesh transfer lazily for a matrix query", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 3, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())

			cmat, err := ts.CoarseUpdateMatrix(u0fine)
			Expect(err).NotTo(HaveOccurred())
			r, c := cmat.Dims()
			Expect(r).To(Equal(ndofFine))
			Expect(c).To(Equal(ndofFine))
			Expect(ts.MeshTransfer()).NotTo(BeNil())
		})

		DescribeTable("is a pure function of sol_start",
			func(coarsen bool) {
				var opts []timeslice.Option
				if coarsen {
					opts = append(opts, timeslice.WithCoarseState(u0coarse))
				}
				ts, err := timeslice.New(intFine, intCoarse, 1e-10, 3, opts...)
				Expect(err).NotTo(HaveOccurred())
				Expect(ts.SetSolStart(u0fine)).To(Succeed())

				Expect(ts.UpdateCoarse()).To(Succeed())
				first, _ := ts.GetSolCoarse()
				Expect(ts.UpdateCoarse()).To(Succeed())
				second, _ := ts.GetSolCoarse()

				Expect(first).NotTo(BeIdenticalTo(second))
				Expect(mat.Equal(vec(first), vec(second))).To(BeTrue())
			},
			Entry("with coarsening", true),
			Entry("without coarsening", false),
		)

		It("leaves sol_start untouched", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			before := copyVec(u0fine)
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())
			Expect(mat.Equal(before, u0fine.Vec())).To(BeTrue())
		})

		It("can run concurrently with the fine update", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5, timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())

			var wg sync.WaitGroup
			errs := make([]error, 2)
			wg.Add(2)
			go func() { defer wg.Done(); errs[0] = ts.UpdateFine() }()
			go func() { defer wg.Done(); errs[1] = ts.UpdateCoarse() }()
			wg.Wait()
			Expect(errs[0]).NotTo(HaveOccurred())
			Expect(errs[1]).NotTo(HaveOccurred())

			fine, err := ts.GetSolFine()
			Expect(err).NotTo(HaveOccurred())
			fmat, _ := ts.FineUpdateMatrix(u0fine)
			Expect(distance(fmat, u0fine.Vec(), fine)).To(BeNumerically("<", 1e-12))
		})
	})

	Describe("matrix queries", func() {
		It("fail for propagators without a matrix form", func() {
			p := opaquePropagator{tstart: tstart, tend: tend}
			ts, err := timeslice.New(p, p, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			_, err = ts.FineUpdateMatrix(u0fine)
			Expect(err).To(MatchError(pint.ErrNotLinear))
			_, err = ts.CoarseUpdateMatrix(u0fine)
			Expect(err).To(MatchError(pint.ErrNotLinear))
		})
	})

	Describe("states without a vector view", func() {
		It("go through fine and coarse updates without coarsening", func() {
			p := opaquePropagator{tstart: tstart, tend: tend}
			ts, err := timeslice.New(p, p, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())

			start := &plainState{v: []float64{1, -2, 3}}
			Expect(ts.SetSolStart(start)).To(Succeed())
			Expect(ts.UpdateCoarse()).To(Succeed())

			coarse, err := ts.GetSolCoarse()
			Expect(err).NotTo(HaveOccurred())
			Expect(coarse).NotTo(BeIdenticalTo(start))
			Expect(coarse.(*plainState).v).To(Equal([]float64{1, -2, 3}))

			Expect(ts.UpdateFine()).To(Succeed())
			fine, err := ts.GetSolFine()
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolEnd(fine)).To(Succeed())
			Expect(ts.IsConverged()).To(BeTrue())
		})

		It("cannot be restricted to a coarser mesh", func() {
			p := opaquePropagator{tstart: tstart, tend: tend}
			ts, err := timeslice.New(p, p, 1e-10, 5,
				timeslice.WithCoarseState(&plainState{v: []float64{0, 0}}))
			Expect(err).NotTo(HaveOccurred())

			Expect(ts.SetSolStart(&plainState{v: []float64{1, 2, 3}})).To(Succeed())
			Expect(ts.UpdateCoarse()).To(MatchError(pint.ErrNoVector))
		})
	})

	Describe("convergence", func() {
		It("is converged when sol_end is the fine result", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-14+rng.Float64(), 1+rng.Intn(3), timeslice.WithCoarseState(u0coarse))
			Expect(err).NotTo(HaveOccurred())

			sol := randomState(rng, ndofFine)
			Expect(ts.SetSolStart(sol)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			fine, _ := ts.GetSolFine()
			Expect(ts.SetSolEnd(fine)).To(Succeed())

			converged, err := ts.IsConverged()
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())
			Expect(ts.Exhausted()).To(BeFalse())
		})

		It("does not mutate sol_fine when computing the residual", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			Expect(ts.SetSolEnd(u0fine)).To(Succeed())

			fine, _ := ts.GetSolFine()
			before := copyVec(fine)
			r1, err := ts.GetResidual()
			Expect(err).NotTo(HaveOccurred())
			r2, err := ts.GetResidual()
			Expect(err).NotTo(HaveOccurred())
			Expect(r1).To(Equal(r2))
			Expect(r1).To(BeNumerically(">", 0))
			Expect(mat.Equal(before, vec(fine))).To(BeTrue())

			last, err := ts.Residual()
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(Equal(r1))
		})

		It("recomputes the residual after sol_end changes", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			Expect(ts.SetSolEnd(u0fine)).To(Succeed())
			r1, _ := ts.GetResidual()

			fine, _ := ts.GetSolFine()
			Expect(ts.SetSolEnd(fine)).To(Succeed())
			r2, _ := ts.GetResidual()
			Expect(r2).To(BeNumerically("<", r1))
			Expect(r2).To(BeNumerically("==", 0))
		})

		It("stops once the iteration budget is used up", func() {
			ts, err := timeslice.New(intFine, intCoarse, 0, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			Expect(ts.SetSolEnd(u0fine)).To(Succeed())

			converged, err := ts.IsConverged()
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())

			ts.IncreaseIter()
			ts.IncreaseIter()
			converged, err = ts.IsConverged()
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())

			numerically, err := ts.Converged()
			Expect(err).NotTo(HaveOccurred())
			Expect(numerically).To(BeFalse())
			Expect(ts.Exhausted()).To(BeTrue())
		})

		It("reports dimension mismatches between sol_fine and sol_end", func() {
			ts, err := timeslice.New(intFine, intCoarse, 1e-10, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts.SetSolStart(u0fine)).To(Succeed())
			Expect(ts.UpdateFine()).To(Succeed())
			Expect(ts.SetSolEnd(u0coarse)).To(Succeed())
			_, err = ts.IsConverged()
			Expect(err).To(MatchError(pint.ErrDimensionMismatch))
		})
	})
})
