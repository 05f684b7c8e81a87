package core

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/lexivec/lexivec/internal/encoding"
)

var registerFunctionsOnce sync.Once

// registerVectorFunctions registers vec_l2 with the driver. Registration is
// process-wide and applies to connections opened afterwards, so it runs
// before the store opens its handle.
func registerVectorFunctions() {
	registerFunctionsOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("vec_l2", 2, vecL2Impl)
	})
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return encoding.DecodeVector(v)
	default:
		return nil, fmt.Errorf("vec_l2: unsupported argument type %T, want BLOB", arg)
	}
}

// vecL2Impl computes the L2 distance between two embedding blobs. NULL in
// propagates NULL out, matching SQL scalar function conventions.
func vecL2Impl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_l2: expected 2 arguments, got %d", len(args))
	}
	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_l2: dimension mismatch %d vs %d", len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
