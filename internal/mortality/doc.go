// Package mortality derives excess mortality from weekly death counts.
//
// An Estimator compares each current-year stratum-week (country, sex,
// optionally age group, ISO week) against the mean of the same
// stratum-week over the preceding reference years. Stratum-weeks without
// reference history are dropped and reported in Result.Dropped. Records
// are dated on the Sunday closing their ISO week and carry a daily average
// of one seventh of the weekly total; Resample spreads that average over
// the days each week covers.
//
// Providers wrap the HMD, Eurostat and Economist feeds, and Reconcile
// blends several of them into one table while refusing to count any
// country twice.
package mortality
