package channel

// Qualify returns, in pool order, the indices of the channels allowed to deliver to r.
// A recipient without an app identifier may use any channel; otherwise only channels
// whose bundle identifier equals it qualify. The result depends only on the pool and
// the recipient, so calling it again during failover yields the same list.
func Qualify(p *Pool, r Recipient) []int {
	qualified := make([]int, 0, len(p.channels))
	for i, c := range p.channels {
		if r.AppIdentifier == "" || r.AppIdentifier == c.BundleID() {
			qualified = append(qualified, i)
		}
	}
	return qualified
}
