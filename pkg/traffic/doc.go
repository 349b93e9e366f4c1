// Package traffic rebuilds workflows from captured request/response traffic.
//
// A capture is an ordered list of Entry pairs, either recorded in process with
// a Recorder or exported by a browser as a HAR file and loaded with LoadHAR.
// Reconstruct replays the screen interpreter over the capture and infers the
// step that produced every navigation, answer and submission.
package traffic
