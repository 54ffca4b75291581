// Package pose tracks the most recent head-pose sample.
//
// Pose samples arrive asynchronously and possibly out of order on a side
// channel, while frames are stamped with "the pose that was current at
// encode time". The Correlator is the single cell shared between those
// two paths: a lock-free latest-value holder that only ever moves
// forward. It is intentionally not a queue — intermediate samples are
// dropped in favor of the freshest known pose.
//
// Feed subscribes to an MQTT topic carrying pose messages and routes them
// into a Correlator, for deployments where the tracker publishes over a
// broker instead of a direct connection.
package pose
