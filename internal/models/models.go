package models

import (
	"errors"
	"fmt"
	"strings"
)

// 定義常見錯誤
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrEmptyKey         = fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	ErrUnsupportedShape = fmt.Errorf("%w: unsupported value shape", ErrInvalidArgument)
)

// Shape 定義快取值的結構類型
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeMap
	ShapeList
	ShapeSet
)

var shapeNames = map[Shape]string{
	ShapeScalar: "scalar",
	ShapeMap:    "map",
	ShapeList:   "list",
	ShapeSet:    "set",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape 解析明確指定的 shape 名稱，大小寫不敏感
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "scalar", "string", "value":
		return ShapeScalar, nil
	case "map", "hash":
		return ShapeMap, nil
	case "list", "sequence":
		return ShapeList, nil
	case "set":
		return ShapeSet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedShape, name)
	}
}

// ShapeFromType resolves the loose "type" query parameter of the read endpoint.
// Matching is by substring; when several names appear the last checked one wins.
func ShapeFromType(typ string) (Shape, bool) {
	var (
		shape Shape
		ok    bool
	)
	if strings.Contains(typ, "Map") {
		shape, ok = ShapeMap, true
	}
	if strings.Contains(typ, "List") {
		shape, ok = ShapeList, true
	}
	if strings.Contains(typ, "Set") {
		shape, ok = ShapeSet, true
	}
	return shape, ok
}
