package emulator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type ParameterType uint8

// Parameter matchers, in priority order. When a token matches several
// types, the first one wins
const (
	PARAM_REGISTER                      ParameterType = iota // $t0
	PARAM_FLOAT_REGISTER                ParameterType = iota // $f2
	PARAM_COP0_REGISTER                 ParameterType = iota // $12, $status
	PARAM_UNSIGNED_5_BIT                ParameterType = iota // 0..31
	PARAM_SIGNED_16_BIT                 ParameterType = iota // -32768..32767
	PARAM_UNSIGNED_16_BIT               ParameterType = iota // 0..65535
	PARAM_SIGNED_32_BIT                 ParameterType = iota // any 32 bit value
	PARAM_REGISTER_SHIFT                ParameterType = iota // ($t0)
	PARAM_SIGNED_16_BIT_REGISTER_SHIFT  ParameterType = iota // -4($t0)
	PARAM_SIGNED_32_BIT_REGISTER_SHIFT  ParameterType = iota // 0x12345($t0)
	PARAM_LABEL                         ParameterType = iota // loop
	PARAM_LABEL_REGISTER_SHIFT          ParameterType = iota // array($t0)
	parameterTypeCount                                = iota
)

var parameterTypeNames = [...]string{
	PARAM_REGISTER:                     "register",
	PARAM_FLOAT_REGISTER:               "float register",
	PARAM_COP0_REGISTER:                "cop0 register",
	PARAM_UNSIGNED_5_BIT:               "unsigned 5-bit",
	PARAM_SIGNED_16_BIT:                "signed 16-bit",
	PARAM_UNSIGNED_16_BIT:              "unsigned 16-bit",
	PARAM_SIGNED_32_BIT:                "signed 32-bit",
	PARAM_REGISTER_SHIFT:               "(register)",
	PARAM_SIGNED_16_BIT_REGISTER_SHIFT: "signed 16-bit(register)",
	PARAM_SIGNED_32_BIT_REGISTER_SHIFT: "signed 32-bit(register)",
	PARAM_LABEL:                        "label",
	PARAM_LABEL_REGISTER_SHIFT:         "label(register)",
}

func (t ParameterType) String() string {
	if int(t) < len(parameterTypeNames) {
		return parameterTypeNames[t]
	}
	return fmt.Sprintf("ParameterType(%d)", uint8(t))
}

var (
	labelPattern = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
	shiftPattern = regexp.MustCompile(`^(.*)\(\s*(\$[A-Za-z0-9]+)\s*\)$`)
)

// Parsed operand. Labels are resolved to their address, stored in
// Immediate
type ParameterValue struct {
	Type      ParameterType
	Register  uint32
	Immediate uint32
	Label     string
}

// Parses an integer literal: decimal, 0x hexadecimal, 0b binary or a
// single quoted character
func parseNumber(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if len(text) == 3 && text[0] == '\'' && text[2] == '\'' {
		return int64(text[1]), true
	}
	val, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		// Accept hexadecimal words with the sign bit set, such as 0xffffffff
		uval, uerr := strconv.ParseUint(text, 0, 32)
		if uerr != nil {
			return 0, false
		}
		return int64(uval), true
	}
	return val, true
}

func inRange(val, low, high int64) bool {
	return val >= low && val <= high
}

// Returns true if `text` can be parsed as a parameter of type `t`
func (t ParameterType) Match(text string, regs *RegisterSet) bool {
	_, err := t.Parse(text, regs, nil)
	if err == nil {
		return true
	}
	// Labels match by shape, they may be defined later in the program
	switch t {
	case PARAM_LABEL:
		return isLabel(text, regs)
	case PARAM_LABEL_REGISTER_SHIFT:
		m := shiftPattern.FindStringSubmatch(strings.TrimSpace(text))
		return m != nil && regs.IsGeneral(m[2]) && isLabel(m[1], regs)
	}
	return false
}

func isLabel(text string, regs *RegisterSet) bool {
	text = strings.TrimSpace(text)
	if !labelPattern.MatchString(text) {
		return false
	}
	_, isNumber := parseNumber(text)
	return !isNumber
}

func parseGeneral(text string, regs *RegisterSet) (uint32, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "$") {
		return 0, fmt.Errorf("%q is not a register", text)
	}
	reg, ok := regs.Get(text)
	if !ok || reg.Identifier < 0 {
		return 0, fmt.Errorf("unknown register %q", text)
	}
	return uint32(reg.Identifier), nil
}

// Parses `text` as a parameter of type `t`. Labels are looked up in
// `labels`
func (t ParameterType) Parse(text string, regs *RegisterSet, labels map[string]uint32) (ParameterValue, error) {
	text = strings.TrimSpace(text)
	value := ParameterValue{Type: t}

	switch t {
	case PARAM_REGISTER:
		reg, err := parseGeneral(text, regs)
		value.Register = reg
		return value, err

	case PARAM_FLOAT_REGISTER:
		if !strings.HasPrefix(text, "$") {
			return value, fmt.Errorf("%q is not a float register", text)
		}
		reg, ok := regs.GetCop1(text)
		if !ok {
			return value, fmt.Errorf("unknown float register %q", text)
		}
		value.Register = uint32(reg.Identifier)
		return value, nil

	case PARAM_COP0_REGISTER:
		if !strings.HasPrefix(text, "$") {
			return value, fmt.Errorf("%q is not a cop0 register", text)
		}
		reg, ok := regs.GetCop0(text)
		if !ok {
			return value, fmt.Errorf("unknown cop0 register %q", text)
		}
		value.Register = uint32(reg.Identifier)
		return value, nil

	case PARAM_UNSIGNED_5_BIT, PARAM_SIGNED_16_BIT, PARAM_UNSIGNED_16_BIT, PARAM_SIGNED_32_BIT:
		val, ok := parseNumber(text)
		if !ok || !t.fits(val) {
			return value, fmt.Errorf("%q is not a valid %v value", text, t)
		}
		value.Immediate = uint32(val)
		return value, nil

	case PARAM_LABEL:
		if !isLabel(text, regs) {
			return value, fmt.Errorf("%q is not a label", text)
		}
		addr, ok := labels[text]
		if !ok {
			return value, fmt.Errorf("undefined label %q", text)
		}
		value.Label = text
		value.Immediate = addr
		return value, nil

	case PARAM_REGISTER_SHIFT, PARAM_SIGNED_16_BIT_REGISTER_SHIFT,
		PARAM_SIGNED_32_BIT_REGISTER_SHIFT, PARAM_LABEL_REGISTER_SHIFT:
		m := shiftPattern.FindStringSubmatch(text)
		if m == nil {
			return value, fmt.Errorf("%q is not a register shift", text)
		}
		reg, err := parseGeneral(m[2], regs)
		if err != nil {
			return value, err
		}
		value.Register = reg

		prefix := strings.TrimSpace(m[1])
		var inner ParameterType
		switch t {
		case PARAM_REGISTER_SHIFT:
			if prefix != "" {
				return value, fmt.Errorf("%q has an offset", text)
			}
			return value, nil
		case PARAM_SIGNED_16_BIT_REGISTER_SHIFT:
			inner = PARAM_SIGNED_16_BIT
		case PARAM_SIGNED_32_BIT_REGISTER_SHIFT:
			inner = PARAM_SIGNED_32_BIT
		default:
			inner = PARAM_LABEL
		}
		offset, err := inner.Parse(prefix, regs, labels)
		if err != nil {
			return value, err
		}
		value.Immediate = offset.Immediate
		value.Label = offset.Label
		return value, nil
	}
	return value, fmt.Errorf("unknown parameter type %v", t)
}

func (t ParameterType) fits(val int64) bool {
	switch t {
	case PARAM_UNSIGNED_5_BIT:
		return inRange(val, 0, 31)
	case PARAM_SIGNED_16_BIT:
		return inRange(val, -0x8000, 0x7fff)
	case PARAM_UNSIGNED_16_BIT:
		return inRange(val, 0, 0xffff)
	case PARAM_SIGNED_32_BIT:
		return inRange(val, -0x80000000, 0xffffffff)
	}
	return false
}

// Returns the first type, in priority order, matching `text`
func InferParameterType(text string, regs *RegisterSet) (ParameterType, bool) {
	for t := ParameterType(0); t < parameterTypeCount; t++ {
		if t.Match(text, regs) {
			return t, true
		}
	}
	return 0, false
}
