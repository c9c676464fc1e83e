package pose

import iface "PoseSilhouette/interface"

const (
	TrackedKeypoint = "nose"
	MinScore        = 0.5
)

// Filter returns the keypoints of p that are tracked and scored strictly above
// MinScore, in input order. The result never aliases p.
func Filter(p iface.Pose) []iface.Keypoint {
	out := make([]iface.Keypoint, 0, 1)
	for _, kp := range p.Keypoints {
		if kp.Score > MinScore && kp.Name == TrackedKeypoint {
			out = append(out, kp)
		}
	}
	return out
}
