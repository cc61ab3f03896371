// Package timeseries holds the observation series and regressor frames
// that mean models are built from.
//
// A Series is a one-dimensional sequence of observations with optional
// timestamps:
//
//	y := timeseries.New(returns)
//
// Prices convert to percentage returns with Returns:
//
//	r, err := prices.Returns(timeseries.LogReturns)
//
// A Frame carries named exogenous regressors aligned row for row with a
// Series. LoadCSV reads both at once and drops incomplete rows jointly:
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.ValueColumn = "ret"
//	opts.Regressors = []string{"vix", "term"}
//	y, x, err := timeseries.LoadCSV("data.csv", opts)
package timeseries
