package types

import (
	"testing"

	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type FieldTestSuite struct {
	suite.Suite
}

func TestFieldSuite(t *testing.T) {
	suite.Run(t, new(FieldTestSuite))
}

func (suite *FieldTestSuite) TestParseField() {
	testCases := []struct {
		name      string
		field     string
		wantClass FieldClass
		wantKind  FieldKind
		wantErr   bool
	}{
		{name: "fundamental numeric", field: "pe_ratio", wantClass: FieldClassFundamental, wantKind: FieldKindNumeric},
		{name: "fundamental text", field: "industry", wantClass: FieldClassFundamental, wantKind: FieldKindText},
		{name: "price column", field: "close", wantClass: FieldClassPrice, wantKind: FieldKindNumeric},
		{name: "fixed indicator column", field: "macd_dif", wantClass: FieldClassIndicator, wantKind: FieldKindNumeric},
		{name: "kdj column", field: "kdj_j", wantClass: FieldClassIndicator, wantKind: FieldKindNumeric},
		{name: "bollinger column", field: "boll_upper", wantClass: FieldClassIndicator, wantKind: FieldKindNumeric},
		{name: "parameterized sma", field: "sma_20", wantClass: FieldClassIndicator, wantKind: FieldKindNumeric},
		{name: "parameterized rsi", field: "rsi_14", wantClass: FieldClassIndicator, wantKind: FieldKindNumeric},
		{name: "unknown name", field: "shoe_size", wantErr: true},
		{name: "bad period suffix", field: "sma_abc", wantErr: true},
		{name: "zero period", field: "ema_0", wantErr: true},
		{name: "empty", field: "", wantErr: true},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			ref, err := ParseField(tc.field)
			if tc.wantErr {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeUnknownField))

				return
			}

			suite.Require().NoError(err)
			suite.Equal(tc.wantClass, ref.Class)
			suite.Equal(tc.wantKind, ref.Kind)
		})
	}
}

func (suite *FieldTestSuite) TestParseFieldPeriod() {
	ref, err := ParseField("rsi_6")
	suite.Require().NoError(err)
	suite.Equal(IndicatorTypeRSI, ref.Indicator)
	suite.Equal("rsi", ref.Column)
	suite.Equal(6, ref.Period)
}

func (suite *FieldTestSuite) TestKnownFieldNamesCoversVocabulary() {
	names := KnownFieldNames()
	suite.Contains(names, "pe_ratio")
	suite.Contains(names, "close")
	suite.Contains(names, "macd_hist")
	suite.NotContains(names, "sma_20")

	for _, name := range names {
		_, err := ParseField(name)
		suite.NoError(err)
	}
}
