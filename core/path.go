package core

import "github.com/signalsfoundry/detailed-router/model"

// TracePath walks the previous directions recorded by the last search back
// from dst to the source it was reached from and returns the points in
// source-to-destination order. It returns nil if dst was not reached.
func (g *GridGraph) TracePath(dst GridPoint) []GridPoint {
	if !g.isValid(dst.X, dst.Y, dst.Z) || g.prevDirs.get(g.idx(dst.X, dst.Y, dst.Z)) == 0 {
		return nil
	}
	path := []GridPoint{dst}
	x, y, z := dst.X, dst.Y, dst.Z
	for n := 0; n < len(g.nodes); n++ {
		v := g.prevDirs.get(g.idx(x, y, z))
		if v == dirRoot || v == 0 {
			break
		}
		x, y, z = step(x, y, z, model.Dir(v).Reverse())
		path = append(path, GridPoint{x, y, z})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// CompressPath keeps the end points of path and every point where the
// direction changes.
func CompressPath(path []GridPoint) []GridPoint {
	if len(path) <= 2 {
		return append([]GridPoint(nil), path...)
	}
	out := []GridPoint{path[0]}
	for i := 1; i+1 < len(path); i++ {
		if moveDir(path[i-1], path[i]) != moveDir(path[i], path[i+1]) {
			out = append(out, path[i])
		}
	}
	return append(out, path[len(path)-1])
}

func moveDir(a, b GridPoint) model.Dir {
	switch {
	case b.X > a.X:
		return model.DirEast
	case b.X < a.X:
		return model.DirWest
	case b.Y > a.Y:
		return model.DirNorth
	case b.Y < a.Y:
		return model.DirSouth
	case b.Z > a.Z:
		return model.DirUp
	case b.Z < a.Z:
		return model.DirDown
	}
	return model.DirUnknown
}

// PathDirs returns the move direction of each step of path.
func PathDirs(path []GridPoint) []model.Dir {
	if len(path) < 2 {
		return nil
	}
	out := make([]model.Dir, len(path)-1)
	for i := range out {
		out[i] = moveDir(path[i], path[i+1])
	}
	return out
}
