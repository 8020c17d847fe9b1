// Package cvat models the hierarchical annotation interchange document and
// converts flat tables into it.
//
// A document is an <annotations> root holding a <version> marker, one
// opaque metadata block, and one <image> element per frame. Each image may
// carry a bounding <box> and carries one <skeleton> with one <points>
// element per keypoint:
//
//	<image id="0" name="a.png" subset="default" task_id="2" width="1280" height="720">
//	  <box label="Bounding Box" source="file" occluded="0" xtl="10" ytl="20" xbr="110" ybr="220" z_order="0"/>
//	  <skeleton label="RatSkeleton" source="file" z_order="0">
//	    <points label="nose" source="file" outside="0" occluded="0" points="55.5,60.25"/>
//	  </skeleton>
//	</image>
//
// Attributes and child elements this package does not interpret are kept in
// RawElement / xml.Attr slices and written back unchanged, so a document
// corrected in the annotation tool survives a decode/encode cycle.
package cvat
