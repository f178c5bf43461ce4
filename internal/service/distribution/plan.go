// internal/service/distribution/plan.go
package distribution

import "leadflow-service/internal/domain/contact"

type pairing struct {
	recordID string
	memberID int64
}

// planDistribution maps records onto members according to method:
//   - manual: contiguous chunks of ceil(n/m), the last chunk may be short
//   - equal: floor(n/m) each, the first n mod m members get one extra
//   - anything else: round-robin by index
func planDistribution(recordIDs []string, memberIDs []int64, method contact.DistributionMethod) []pairing {
	n, m := len(recordIDs), len(memberIDs)
	if n == 0 || m == 0 {
		return nil
	}

	plan := make([]pairing, 0, n)
	switch method {
	case contact.MethodManual:
		chunk := (n + m - 1) / m
		for i, id := range recordIDs {
			plan = append(plan, pairing{recordID: id, memberID: memberIDs[i/chunk]})
		}
	case contact.MethodEqual:
		base, rem := n/m, n%m
		i := 0
		for j, member := range memberIDs {
			share := base
			if j < rem {
				share++
			}
			for k := 0; k < share; k++ {
				plan = append(plan, pairing{recordID: recordIDs[i], memberID: member})
				i++
			}
		}
	default:
		for i, id := range recordIDs {
			plan = append(plan, pairing{recordID: id, memberID: memberIDs[i%m]})
		}
	}
	return plan
}
