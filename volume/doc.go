// Package volume provides the voxel grid the path-search core runs on.
//
// What:
//
//   - Coord is an integer (x, y, z) voxel address; (0,0,0) is a corner and
//     z is fixed at 0 for 2D images.
//   - Sampler is the read-only view of a calibrated scalar image the core
//     needs: per-voxel intensity, bounds, voxel spacing and intensity range.
//   - Volume is a dense in-memory Sampler backed by a row-major []float32.
//   - Offsets enumerates the 26-connected (3D) or 8-connected (2D)
//     neighbourhood; StepLength converts an offset into a physical distance.
//   - Statistics summarises a sampler (mean, standard deviation, range).
//
// Indexing:
//
//	idx = (z*Height + y)*Width + x
//
// Errors:
//
//   - ErrEmptyVolume: a dimension is < 1 or no data was given.
//   - ErrDataSize:    data length does not match Width×Height×Depth.
//   - ErrBadSpacing:  a voxel spacing is ≤ 0, NaN or infinite.
//   - ErrBadRange:    the intensity range is NaN or inverted.
//   - ErrOutOfBounds: a coordinate lies outside the volume.
package volume
