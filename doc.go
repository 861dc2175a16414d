/*
Package dope runs a Deep Object Pose Estimation (DOPE) network on the Rockchip
NPU via the RKNN Toolkit2 C API and provides the building blocks of a batch
pose evaluation harness.

The root package loads the compiled network (LoadModel), runs inference on an
RGB image (Model.Inference) and pools models across NPU cores (Pool).  The
sub packages decode the belief maps and affinity fields into 2D cuboids
(postprocess), recover the 3D pose with PnP (pnp), iterate test sets
(harness) and write the JSON report (report).

See example/dope-eval for the command line harness.
*/
package dope
