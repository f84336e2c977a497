package claim

import "github.com/MuriData/zkclaim/config"

// Depth is the eligibility tree height this circuit proves membership
// against — fixed at the package level rather than threaded through every
// call site, matching the teacher's MaxTreeDepth convention.
const Depth = config.TreeDepth
