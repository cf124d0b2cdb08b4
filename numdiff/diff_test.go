package numdiff

import (
	"math"
	"testing"
)

func objV2(x, y []float64) {
	y[0] = x[0] * math.Sin(x[1])
	y[1] = x[1] * math.Cos(x[0])
	y[2] = math.Pow(x[0], 3) * math.Pow(x[1], -0.5)
}

func jacV2(x []float64) []float64 {
	return []float64{
		math.Sin(x[1]), x[0] * math.Cos(x[1]),
		-x[1] * math.Sin(x[0]), math.Cos(x[0]),
		3 * math.Pow(x[0], 2) * math.Pow(x[1], -0.5), -0.5 * math.Pow(x[0], 3) * math.Pow(x[1], -1.5),
	}
}

// The forward scheme carries O(√𝜀) truncation error at a non-stationary point.
func relativeEqual(got, want []float64, tol float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		scale := math.Max(1, math.Abs(want[i]))
		if math.Abs(got[i]-want[i]) > tol*scale {
			return false
		}
	}
	return true
}

func TestDiffForward(t *testing.T) {

	ja := Jacobian{N: 2, M: 3, Object: objV2}
	x0 := []float64{1.5, 2.5}
	diff := make([]float64, 6)

	if err := ja.Diff(x0, nil, diff, nil); err != nil {
		t.Fatal(err)
	}

	switch {
	case !relativeEqual(diff, jacV2(x0), 1e-6):
		t.Fatal("unexpected jacobian estimation")
	case x0[0] != 1.5 || x0[1] != 2.5:
		t.Fatal("x0 not restored after perturbation")
	}
}

func TestDiffBaseReuse(t *testing.T) {

	x0 := []float64{1.5, 2.5}

	f0 := make([]float64, 3)
	objV2(x0, f0)

	evals := 0
	counted := Jacobian{N: 2, M: 3, Object: func(x, y []float64) {
		evals++
		objV2(x, y)
	}}

	fresh := make([]float64, 6)
	reuse := make([]float64, 6)
	if err := counted.Diff(x0, nil, fresh, nil); err != nil {
		t.Fatal(err)
	}
	without := evals

	evals = 0
	if err := counted.Diff(x0, f0, reuse, nil); err != nil {
		t.Fatal(err)
	}

	switch {
	case without != 3:
		t.Fatal("fresh estimation should cost n+1 evaluations")
	case evals != 2:
		t.Fatal("base reuse should cost n evaluations")
	case !relativeEqual(reuse, fresh, 0):
		t.Fatal("base reuse changed the estimation")
	}
}

func TestDiffTranspose(t *testing.T) {

	x0 := []float64{1.5, 2.5}
	plain := make([]float64, 6)
	trans := make([]float64, 6)

	ja := Jacobian{N: 2, M: 3, Object: objV2}
	if err := ja.Diff(x0, nil, plain, nil); err != nil {
		t.Fatal(err)
	}

	jt := Jacobian{N: 2, M: 3, Object: objV2, TransJac: true}
	if err := jt.Diff(x0, nil, trans, nil); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if plain[j+i*2] != trans[i+j*3] {
				t.Fatal("transposed estimation mismatch")
			}
		}
	}
}

func TestDiffWorkspace(t *testing.T) {

	ja := Jacobian{N: 2, M: 3, Object: objV2}
	x0 := []float64{1.5, 2.5}
	diff := make([]float64, 6)

	if ja.WorkLen() != 8 {
		t.Fatal("unexpected work length")
	}

	work := make([]float64, ja.WorkLen())
	if err := ja.Diff(x0, nil, diff, work); err != nil {
		t.Fatal(err)
	}
	if !relativeEqual(diff, jacV2(x0), 1e-6) {
		t.Fatal("unexpected jacobian estimation")
	}

	short := make([]float64, ja.WorkLen()-1)
	if err := ja.Diff(x0, nil, diff, short); err == nil {
		t.Fatal("short work space not rejected")
	}
}

func TestDiffCheck(t *testing.T) {

	x0 := []float64{1.5, 2.5}
	diff := make([]float64, 6)

	cases := []Jacobian{
		{N: 0, M: 3, Object: objV2},
		{N: 2, M: 0, Object: objV2},
		{N: 2, M: 3},
		{N: 3, M: 2, Object: objV2},
	}
	for i := range cases {
		if err := cases[i].Diff(x0, nil, diff, nil); err == nil {
			t.Fatalf("invalid spec %d not rejected", i)
		}
	}

	ja := Jacobian{N: 2, M: 3, Object: objV2}
	if err := ja.Diff(x0, []float64{1}, diff, nil); err == nil {
		t.Fatal("invalid f0 dimension not rejected")
	}
}
