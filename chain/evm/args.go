package evm

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/protobase/launchpad/compiler"
)

// CoerceArgs converts loosely typed constructor arguments, as they arrive from JSON or a command
// line, into the Go types go-ethereum's ABI packer expects for inputs.
//
// Integers accept decimal or 0x-prefixed strings, JSON numbers and Go integers. Addresses, bytes
// and fixed bytes accept hex strings. Values that already have the exact Go type pass through.
func CoerceArgs(inputs abi.Arguments, values []any) ([]any, error) {
	if len(values) != len(inputs) {
		return nil, fmt.Errorf("constructor expects %d argument(s), got %d", len(inputs), len(values))
	}

	out := make([]any, len(values))
	for i, in := range inputs {
		v, err := coerce(in.Type, values[i])
		if err != nil {
			name := in.Name
			if name == "" {
				name = "#" + strconv.Itoa(i)
			}

			return nil, fmt.Errorf("argument %s (%s): %w", name, in.Type.String(), err)
		}
		out[i] = v
	}

	return out, nil
}

// EncodeConstructorArgs returns the hex encoded (no 0x prefix) constructor arguments of
// artifact, the form block explorers expect alongside the source.
func EncodeConstructorArgs(artifact *compiler.Artifact, args []any) (string, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return "", err
	}
	coerced, err := CoerceArgs(parsed.Constructor.Inputs, args)
	if err != nil {
		return "", err
	}
	packed, err := parsed.Pack("", coerced...)
	if err != nil {
		return "", fmt.Errorf("encode constructor arguments of %s: %w", artifact.ContractName, err)
	}

	return hex.EncodeToString(packed), nil
}

func coerce(t abi.Type, v any) (any, error) {
	if v == nil {
		return nil, errors.New("missing value")
	}
	if rt := t.GetType(); reflect.TypeOf(v) == rt {
		return v, nil
	}

	switch t.T {
	case abi.IntTy, abi.UintTy:
		return coerceInt(t, v)
	case abi.BoolTy:
		return coerceBool(v)
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}

		return s, nil
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %v", v)
		}

		return common.HexToAddress(s), nil
	case abi.BytesTy:
		return coerceBytes(v)
	case abi.FixedBytesTy:
		b, err := coerceBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))

		return arr.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported argument type, got %T", v)
	}
}

func coerceInt(t abi.Type, v any) (any, error) {
	n, err := toBig(v)
	if err != nil {
		return nil, err
	}

	lo, hi := intRange(t)
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return nil, fmt.Errorf("%s out of range for %s", n, t.String())
	}

	// Wider types are packed from *big.Int, narrower ones from the sized Go integer.
	rt := t.GetType()
	if rt == reflect.TypeOf(&big.Int{}) {
		return n, nil
	}
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(rt).Interface(), nil
	}

	return reflect.ValueOf(n.Int64()).Convert(rt).Interface(), nil
}

func intRange(t abi.Type) (lo, hi *big.Int) {
	one := big.NewInt(1)
	if t.T == abi.UintTy {
		hi = new(big.Int).Sub(new(big.Int).Lsh(one, uint(t.Size)), one)

		return big.NewInt(0), hi
	}
	hi = new(big.Int).Sub(new(big.Int).Lsh(one, uint(t.Size-1)), one)
	lo = new(big.Int).Neg(new(big.Int).Lsh(one, uint(t.Size-1)))

	return lo, hi
}

func toBig(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return new(big.Int).Set(x), nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(x), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}

		return n, nil
	case json.Number:
		return toBig(x.String())
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("invalid integer %v", x)
		}
		n, _ := big.NewFloat(x).Int(nil)

		return n, nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	default:
		return nil, fmt.Errorf("want integer, got %T", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("invalid bool %q", x)
		}

		return b, nil
	default:
		return false, fmt.Errorf("want bool, got %T", v)
	}
}

func coerceBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		b, err := hexutil.Decode(x)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", x, err)
		}

		return b, nil
	default:
		return nil, fmt.Errorf("want hex bytes, got %T", v)
	}
}
