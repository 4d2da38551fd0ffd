// Package names recognises name registrations carried in output scripts.
//
// A name operation prefixes an ordinary locking script:
//
//	OP_NAME_NEW         <hash> OP_2DROP <script>
//	OP_NAME_FIRSTUPDATE <name> <rand> <value> OP_2DROP OP_2DROP <script>
//	OP_NAME_UPDATE      <name> <value> OP_2DROP OP_DROP <script>
package names

import (
	"github.com/btcsuite/btcd/txscript"
)

const (
	OpNameNew         = txscript.OP_1
	OpNameFirstUpdate = txscript.OP_2
	OpNameUpdate      = txscript.OP_3

	// ExpirationDepth is the number of blocks after its last update at which
	// a name expires.
	ExpirationDepth = 36000
)

// Op is a decoded name operation.
type Op struct {
	Code  byte
	Name  []byte
	Value []byte
	// Script is the locking script following the name prefix.
	Script []byte
}

// Registers reports whether the operation assigns a value to a name.
func (op *Op) Registers() bool {
	return op.Code == OpNameFirstUpdate || op.Code == OpNameUpdate
}

// Parse decodes the name prefix of script. ok is false for scripts that are
// not name operations.
func Parse(script []byte) (op *Op, ok bool) {
	tok := txscript.MakeScriptTokenizer(0, script)
	if !tok.Next() {
		return nil, false
	}
	code := tok.Opcode()

	var nargs int
	var drops []byte
	switch code {
	case OpNameNew:
		nargs, drops = 1, []byte{txscript.OP_2DROP}
	case OpNameFirstUpdate:
		nargs, drops = 3, []byte{txscript.OP_2DROP, txscript.OP_2DROP}
	case OpNameUpdate:
		nargs, drops = 2, []byte{txscript.OP_2DROP, txscript.OP_DROP}
	default:
		return nil, false
	}

	args := make([][]byte, 0, nargs)
	for len(args) < nargs {
		if !tok.Next() || tok.Opcode() > txscript.OP_PUSHDATA4 {
			return nil, false
		}
		args = append(args, tok.Data())
	}
	for _, want := range drops {
		if !tok.Next() || tok.Opcode() != want {
			return nil, false
		}
	}
	if tok.Err() != nil {
		return nil, false
	}

	op = &Op{Code: code, Script: script[tok.ByteIndex():]}
	switch code {
	case OpNameFirstUpdate:
		op.Name, op.Value = args[0], args[2]
	case OpNameUpdate:
		op.Name, op.Value = args[0], args[1]
	}
	return op, true
}

// UpdateScript builds an OP_NAME_UPDATE script in front of script.
func UpdateScript(name, value, script []byte) ([]byte, error) {
	prefix, err := txscript.NewScriptBuilder().
		AddOp(OpNameUpdate).
		AddData(name).
		AddData(value).
		AddOp(txscript.OP_2DROP).
		AddOp(txscript.OP_DROP).
		Script()
	if err != nil {
		return nil, err
	}
	return append(prefix, script...), nil
}

// ExpiresIn returns the number of blocks until a name last updated at
// nameHeight expires, counted from tipHeight. Zero or less means expired.
func ExpiresIn(nameHeight uint32, tipHeight int32) int32 {
	return int32(nameHeight) + ExpirationDepth - tipHeight
}
