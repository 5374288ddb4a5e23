package core

// ClusterTotal is the aggregate for one cluster within a day.
type ClusterTotal struct {
	Cluster string
	Total   Money
	Count   int64
}

// DaySummary is a consistent snapshot of one day's spend: the per-cluster
// aggregates ordered by total descending (cluster ascending on ties) and the
// grand total, read in a single transaction.
type DaySummary struct {
	Day      Day
	Clusters []ClusterTotal
	Total    Money
}
