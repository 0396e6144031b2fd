package ir

// BuiltinFn identifies a builtin function called by a BuiltinCall.
type BuiltinFn uint8

const (
	BuiltinAbs BuiltinFn = iota
	BuiltinMin
	BuiltinMax
	BuiltinClamp
	BuiltinSelect
	BuiltinDot
	BuiltinLength
	BuiltinNormalize
	BuiltinSaturate
	BuiltinArrayLength
	BuiltinWorkgroupBarrier
	BuiltinStorageBarrier
	BuiltinAtomicLoad
	BuiltinAtomicStore
	BuiltinAtomicAdd
	BuiltinAtomicSub
	BuiltinAtomicMax
	BuiltinAtomicMin
	BuiltinAtomicAnd
	BuiltinAtomicOr
	BuiltinAtomicXor
	BuiltinAtomicExchange
	BuiltinTextureSample
	BuiltinTextureLoad
	BuiltinTextureStore
	BuiltinTextureDimensions
	numBuiltinFns
)

var builtinFnInfo = [numBuiltinFns]struct {
	name        string
	sideEffects bool
}{
	BuiltinAbs:               {"abs", false},
	BuiltinMin:               {"min", false},
	BuiltinMax:               {"max", false},
	BuiltinClamp:             {"clamp", false},
	BuiltinSelect:            {"select", false},
	BuiltinDot:               {"dot", false},
	BuiltinLength:            {"length", false},
	BuiltinNormalize:         {"normalize", false},
	BuiltinSaturate:          {"saturate", false},
	BuiltinArrayLength:       {"arrayLength", false},
	BuiltinWorkgroupBarrier:  {"workgroupBarrier", true},
	BuiltinStorageBarrier:    {"storageBarrier", true},
	BuiltinAtomicLoad:        {"atomicLoad", true},
	BuiltinAtomicStore:       {"atomicStore", true},
	BuiltinAtomicAdd:         {"atomicAdd", true},
	BuiltinAtomicSub:         {"atomicSub", true},
	BuiltinAtomicMax:         {"atomicMax", true},
	BuiltinAtomicMin:         {"atomicMin", true},
	BuiltinAtomicAnd:         {"atomicAnd", true},
	BuiltinAtomicOr:          {"atomicOr", true},
	BuiltinAtomicXor:         {"atomicXor", true},
	BuiltinAtomicExchange:    {"atomicExchange", true},
	BuiltinTextureSample:     {"textureSample", false},
	BuiltinTextureLoad:       {"textureLoad", false},
	BuiltinTextureStore:      {"textureStore", true},
	BuiltinTextureDimensions: {"textureDimensions", false},
}

func (f BuiltinFn) String() string {
	if f < numBuiltinFns {
		return builtinFnInfo[f].name
	}
	return "builtin?"
}

// HasSideEffects reports whether a call to f writes memory or synchronizes.
func (f BuiltinFn) HasSideEffects() bool {
	return f < numBuiltinFns && builtinFnInfo[f].sideEffects
}

// BuiltinFnByName returns the builtin function called name.
func BuiltinFnByName(name string) (BuiltinFn, bool) {
	for f := BuiltinFn(0); f < numBuiltinFns; f++ {
		if builtinFnInfo[f].name == name {
			return f, true
		}
	}
	return 0, false
}
