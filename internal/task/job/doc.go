// Package job is the execution engine: a Job owns a periodic timer, a
// callback, a timeout and its State, and drives every timer tick through the
// same firing cycle.
//
// Firing cycle:
//  1. try to take the run token; if a previous firing still holds it the tick
//     is skipped (never queued)
//  2. mark running, call on-start
//  3. race the callback against the timeout (see package race)
//  4. report any error to on-exception and the log
//  5. record the outcome; single-shot jobs call on-end then dispose, recurring
//     jobs realign their timer then call on-end
//  6. release the token
//
// Nothing raised by a firing escapes to the timer goroutine.
package job
