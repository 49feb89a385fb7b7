/*
Package manifest declares slice types in YAML instead of Go.

A manifest lists slices with their fields, parents, derived fields and simple
reducers. Derived fields and reducers are expressions evaluated with
expr-lang/expr; they compile into ordinary reactions and reducers, so a
manifest-built catalog behaves exactly like one declared with package dsl.

	slices:
	  - name: Camera
	    fields:
	      bit_depth: {type: int, default: 16}
	    reducers:
	      - name: set_bit_depth
	        payload: int
	        set: bit_depth
	        expr: min(64, max(0, payload))
	  - name: Display
	    fields:
	      bit_depth: {type: int, default: 8}
	    derive:
	      - name: follow_camera
	        from: [Camera.bit_depth]
	        set: bit_depth
	        expr: Camera_bit_depth
	store: [Camera, Display]
*/
package manifest
