package graphql

import (
	"github.com/graphql-go/graphql"
)

var (
	// heights travel as decimal strings so they never lose precision
	bigIntType  = graphql.String
	addressType = graphql.String
	hashType    = graphql.String

	transactionType *graphql.Object
	scanResultType  *graphql.Object
	changeRoleType  *graphql.Object
	coinType        *graphql.Object
	encodedMsgType  *graphql.Object
	statusEnumType  *graphql.Enum
	roleEnumType    *graphql.Enum
	changeRoleInput *graphql.InputObject
	coinInputType   *graphql.InputObject
)

func init() {
	statusEnumType = graphql.NewEnum(graphql.EnumConfig{
		Name: "TransactionStatus",
		Values: graphql.EnumValueConfigMap{
			"SUCCESS": &graphql.EnumValueConfig{Value: "success"},
			"FAILED":  &graphql.EnumValueConfig{Value: "failed"},
		},
	})

	transactionType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Transaction",
		Description: "A transfer that involves the queried wallet",
		Fields: graphql.Fields{
			"hash":      &graphql.Field{Type: graphql.NewNonNull(hashType)},
			"height":    &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
			"timestamp": &graphql.Field{Type: graphql.String, Description: "RFC 3339 block time; null when unknown"},
			"from":      &graphql.Field{Type: graphql.NewNonNull(addressType)},
			"to":        &graphql.Field{Type: graphql.NewNonNull(addressType)},
			"amount":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"denom":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"status":    &graphql.Field{Type: graphql.NewNonNull(statusEnumType)},
		},
	})

	scanResultType = graphql.NewObject(graphql.ObjectConfig{
		Name: "ScanResult",
		Fields: graphql.Fields{
			"address":       &graphql.Field{Type: graphql.NewNonNull(addressType)},
			"skipped":       &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"skipReason":    &graphql.Field{Type: graphql.String},
			"latest":        &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
			"floor":         &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
			"heights":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"failedHeights": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(bigIntType)))},
			"matched":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"discovered":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(hashType)))},
			"interrupted":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})

	roleEnumType = graphql.NewEnum(graphql.EnumConfig{
		Name: "Role",
		Values: graphql.EnumValueConfigMap{
			"ROLE_UNSPECIFIED": &graphql.EnumValueConfig{Value: "ROLE_UNSPECIFIED"},
			"ROLE_GUEST":       &graphql.EnumValueConfig{Value: "ROLE_GUEST"},
			"ROLE_CITIZEN":     &graphql.EnumValueConfig{Value: "ROLE_CITIZEN"},
			"ROLE_VALIDATOR":   &graphql.EnumValueConfig{Value: "ROLE_VALIDATOR"},
		},
	})

	coinType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Coin",
		Fields: graphql.Fields{
			"denom":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"amount": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	changeRoleType = graphql.NewObject(graphql.ObjectConfig{
		Name: "MsgChangeRole",
		Fields: graphql.Fields{
			"address":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"newRole":   &graphql.Field{Type: graphql.NewNonNull(graphql.String), Description: "Role name; unknown values render as ROLE_<n>"},
			"zkpProof":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"changeFee": &graphql.Field{Type: coinType},
		},
	})

	encodedMsgType = graphql.NewObject(graphql.ObjectConfig{
		Name: "EncodedMsg",
		Fields: graphql.Fields{
			"typeUrl": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"base64":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"hex":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	coinInputType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CoinInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"denom":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"amount": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	changeRoleInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "MsgChangeRoleInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"address":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"newRole":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(roleEnumType)},
			"zkpProof":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"changeFee": &graphql.InputObjectFieldConfig{Type: coinInputType},
		},
	})
}
